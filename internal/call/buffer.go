package call

import (
	"github.com/gammazero/deque"
	"github.com/pion/webrtc/v4"
)

// candidateBuffer holds remote candidates that arrived before a remote
// description was set. Applying a candidate without a remote description
// is invalid, so early arrivals wait here in FIFO order instead of being
// dropped. Owned by the session loop; no locking.
type candidateBuffer struct {
	q deque.Deque[webrtc.ICECandidateInit]
}

func (b *candidateBuffer) Push(c webrtc.ICECandidateInit) {
	b.q.PushBack(c)
}

// Drain empties the buffer and returns its contents in arrival order.
func (b *candidateBuffer) Drain() []webrtc.ICECandidateInit {
	if b.q.Len() == 0 {
		return nil
	}

	out := make([]webrtc.ICECandidateInit, 0, b.q.Len())
	for b.q.Len() > 0 {
		out = append(out, b.q.PopFront())
	}
	return out
}

func (b *candidateBuffer) Len() int {
	return b.q.Len()
}
