package ws

import "sort"

// SubscriptionSet is the set of stream names live on one connection.
// It is owned by the writer goroutine and is not safe for concurrent use.
type SubscriptionSet struct {
	items map[string]struct{}
}

func NewSubscriptionSet() *SubscriptionSet {
	return &SubscriptionSet{items: make(map[string]struct{})}
}

// Missing returns the items not yet in the set, deduplicated, in caller order.
func (s *SubscriptionSet) Missing(items []string) []string {
	return s.filter(items, false)
}

// Present returns the items already in the set, deduplicated, in caller order.
func (s *SubscriptionSet) Present(items []string) []string {
	return s.filter(items, true)
}

func (s *SubscriptionSet) filter(items []string, present bool) []string {
	var out []string
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		if _, ok := s.items[item]; ok == present {
			out = append(out, item)
		}
	}
	return out
}

func (s *SubscriptionSet) Add(items []string) {
	for _, item := range items {
		s.items[item] = struct{}{}
	}
}

func (s *SubscriptionSet) Remove(items []string) {
	for _, item := range items {
		delete(s.items, item)
	}
}

func (s *SubscriptionSet) Contains(item string) bool {
	_, ok := s.items[item]
	return ok
}

func (s *SubscriptionSet) Len() int {
	return len(s.items)
}

// Items returns the members in lexical order.
func (s *SubscriptionSet) Items() []string {
	out := make([]string, 0, len(s.items))
	for item := range s.items {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
