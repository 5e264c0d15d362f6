package events_test

import (
	"testing"

	"github.com/ardanlabs/ledgersim/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	evts := events.New()

	ch1 := evts.Acquire("a")
	ch2 := evts.Acquire("b")
	if evts.Acquire("a") != ch1 {
		t.Fatalf("Should get the same channel for the same id.")
	}

	evts.Sendf("blk[%d]", 1)

	for _, ch := range []chan string{ch1, ch2} {
		if msg := <-ch; msg != "blk[1]" {
			t.Fatalf("Should receive the message: got %q", msg)
		}
	}

	if err := evts.Release("a"); err != nil {
		t.Fatalf("Should release the channel: %s", err)
	}
	if err := evts.Release("a"); err == nil {
		t.Fatalf("Should not release the channel twice.")
	}
	if _, open := <-ch1; open {
		t.Fatalf("Should close a released channel.")
	}

	evts.Shutdown()
	if _, open := <-ch2; open || evts.Count() != 0 {
		t.Fatalf("Should close every channel on shutdown.")
	}
}

func Test_SendDoesNotBlock(t *testing.T) {
	evts := events.New()
	evts.Acquire("slow")

	for i := 0; i < 500; i++ {
		evts.Send("msg")
	}
}

func Test_Topics(t *testing.T) {
	t.Log("Given the need to subscribe to a subset of the engine events.")
	{
		t.Logf("\tTest 0:\tWhen a subscriber asks for the chain and vm topics.")
		{
			evts := events.New()
			defer evts.Shutdown()

			filtered := evts.Acquire("filtered", "chain", " VM ")
			all := evts.Acquire("all")

			evts.Sendf("network: RunConsensus: winner[%s]", "alice")
			evts.Sendf("chain: ReplaceChain: REPLACED: len[%d]", 3)
			evts.Send("vm: Execute: SUCCESS")
			evts.Send("no topic here")

			var got []string
			for len(filtered) > 0 {
				got = append(got, <-filtered)
			}

			if len(got) != 2 || got[0] != "chain: ReplaceChain: REPLACED: len[3]" || got[1] != "vm: Execute: SUCCESS" {
				t.Fatalf("\t%s\tTest 0:\tShould only receive chain and vm events: got %v", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould only receive chain and vm events.", success)

			if len(all) != 4 {
				t.Fatalf("\t%s\tTest 0:\tShould deliver every event without topics: got %d", failed, len(all))
			}
			t.Logf("\t%s\tTest 0:\tShould deliver every event without topics.", success)
		}

		t.Logf("\tTest 1:\tWhen the topic of a message is parsed.")
		{
			tt := map[string]string{
				"Chain: AddBlock: blk[1]": "chain",
				"worker: run: started":    "worker",
				"plain message":           "",
			}
			for msg, exp := range tt {
				if got := events.Topic(msg); got != exp {
					t.Fatalf("\t%s\tTest 1:\tShould parse %q as %q: got %q", failed, msg, exp, got)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould parse the topic before the first colon.", success)
		}
	}
}
