package shadow

// NoSlot marks a light that does not sample a shadow map.
const NoSlot = 0xFFFFFFFF

// Slots hands out shadow-map atlas slots in request order.
type Slots struct {
	max  uint32
	next uint32
}

// NewSlots returns an allocator for an atlas with room for n maps.
func NewSlots(n int) *Slots {
	return &Slots{max: uint32(max(n, 0))}
}

// Next returns the next free slot, or NoSlot once the atlas is full.
func (s *Slots) Next() uint32 {
	if s.next >= s.max {
		return NoSlot
	}
	slot := s.next
	s.next++
	return slot
}

// Used returns how many slots were handed out.
func (s *Slots) Used() int {
	return int(s.next)
}
