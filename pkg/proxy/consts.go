package proxy

import "time"

const (
	// receiverYield and senderYield are the data-path threads' polling
	// intervals -- tunables, not correctness constants, per the spec's
	// design notes.
	receiverYield = time.Millisecond
	senderYield   = time.Millisecond

	// supervisorInterval is the reattach-watch loop's polling interval.
	supervisorInterval = 250 * time.Millisecond

	// defaultDestroySendAttempts is the spec's "10 retries + 1 initial
	// attempt" for the best-effort Destroy send.
	defaultDestroySendAttempts = 11

	gatewayMessageVersion uint8 = 1
	uriTypeOpaque         uint8 = 0
)
