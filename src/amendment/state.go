package amendment

import "sort"

// State is the set of members and voters in effect after an amendment.
// Members maps each member fingerprint to the reference number of its last
// written membership.
type State struct {
	Members map[string]int `json:"members"`
	Voters  []string       `json:"voters"`
}

// NewState returns the empty state that precedes the genesis amendment.
func NewState() *State {
	return &State{
		Members: make(map[string]int),
		Voters:  []string{},
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	res := &State{
		Members: make(map[string]int, len(s.Members)),
		Voters:  make([]string, len(s.Voters)),
	}
	for k, v := range s.Members {
		res.Members[k] = v
	}
	copy(res.Voters, s.Voters)
	return res
}

// IsMember ...
func (s *State) IsMember(fpr string) bool {
	_, ok := s.Members[fpr]
	return ok
}

// IsVoter ...
func (s *State) IsVoter(fpr string) bool {
	i := sort.SearchStrings(s.Voters, fpr)
	return i < len(s.Voters) && s.Voters[i] == fpr
}

// MemberList returns the sorted member fingerprints.
func (s *State) MemberList() []string {
	res := make([]string, 0, len(s.Members))
	for k := range s.Members {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

func (s *State) addVoter(fpr string) {
	if s.IsVoter(fpr) {
		return
	}
	s.Voters = append(s.Voters, fpr)
	sort.Strings(s.Voters)
}

func (s *State) removeVoter(fpr string) bool {
	i := sort.SearchStrings(s.Voters, fpr)
	if i == len(s.Voters) || s.Voters[i] != fpr {
		return false
	}
	s.Voters = append(s.Voters[:i], s.Voters[i+1:]...)
	return true
}

// Marshal ...
func (s *State) Marshal() ([]byte, error) {
	return marshal(s)
}

// Unmarshal ...
func (s *State) Unmarshal(data []byte) error {
	return unmarshal(data, s)
}
