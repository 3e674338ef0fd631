package priorityQueue

import (
	"container/heap"
	"time"
)

// An InFlightFrame is a frame the channel has scheduled for future delivery.
type InFlightFrame struct {
	DeliverAt time.Time // when the frame reaches the destination
	Index     int       // the index of the item in the heap
	Direction string    // "A->B" or "B->A"
	Corrupted bool      // deliver as a CKSUM_ERR instead of a frame
	Frame     any       // the protocol frame being carried
}

// A DeliverySchedule implements heap.Interface and holds InFlightFrames
// ordered by delivery time.
type DeliverySchedule []*InFlightFrame

func (pq DeliverySchedule) Len() int { return len(pq) }

func (pq DeliverySchedule) Less(i, j int) bool {
	// We want Pop to give us the earliest delivery, so we use Before here
	return pq[i].DeliverAt.Before(pq[j].DeliverAt)
}

func (pq DeliverySchedule) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *DeliverySchedule) Push(x any) {
	n := len(*pq)
	item := x.(*InFlightFrame)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *DeliverySchedule) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // don't stop the GC from reclaiming the item eventually
	item.Index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// Schedule inserts an entry keeping the heap ordering.
func (pq *DeliverySchedule) Schedule(item *InFlightFrame) {
	heap.Push(pq, item)
}

// PopDue removes and returns the earliest entry whose delivery time has
// passed, or nil if nothing is due yet.
func (pq *DeliverySchedule) PopDue(now time.Time) *InFlightFrame {
	if len(*pq) == 0 || (*pq)[0].DeliverAt.After(now) {
		return nil
	}
	return heap.Pop(pq).(*InFlightFrame)
}
