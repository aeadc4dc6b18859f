package conversation

import "time"

// State is the mutable per-chat record of one in-flight dialog. It is owned
// by the Engine and persisted through a Store after every mutation; the
// Store holds at most one State per chat id.
type State struct {
	Name       string            `json:"name"`
	ChatID     string            `json:"chat_id"`
	Data       map[string]string `json:"data"`
	MessageIDs []int             `json:"message_ids"`
	StepIndex  int               `json:"step_index"`
	StartedAt  int64             `json:"started_at"`
	UpdatedAt  int64             `json:"updated_at"`
	Cancelled  bool              `json:"cancelled"`
	Finished   bool              `json:"finished"`
}

// NewState starts a fresh record at step 0.
func NewState(name, chatID string) *State {
	now := time.Now().Unix()
	return &State{
		Name:       name,
		ChatID:     chatID,
		Data:       map[string]string{},
		MessageIDs: []int{},
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Set records a collected value under a step key.
func (s *State) Set(key, value string) {
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	s.Data[key] = value
	s.touch()
}

// Get reads a collected value.
func (s *State) Get(key string) (string, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// Advance moves to the next step.
func (s *State) Advance() {
	s.StepIndex++
	s.touch()
}

// AddMessageID remembers an outbound message id for later cleanup.
func (s *State) AddMessageID(id int) {
	s.MessageIDs = append(s.MessageIDs, id)
	s.touch()
}

// ClearMessageIDs drops the outstanding cleanup list.
func (s *State) ClearMessageIDs() {
	s.MessageIDs = []int{}
	s.touch()
}

func (s *State) MarkCancelled() {
	s.Cancelled = true
	s.touch()
}

func (s *State) MarkFinished() {
	s.Finished = true
	s.touch()
}

// Clone returns an independent copy, so stores can hand out snapshots.
func (s *State) Clone() *State {
	cp := *s
	cp.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		cp.Data[k] = v
	}
	cp.MessageIDs = append([]int{}, s.MessageIDs...)
	return &cp
}

func (s *State) touch() {
	s.UpdatedAt = time.Now().Unix()
}
