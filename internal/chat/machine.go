// Package chat implements the scripted FAQ chat widget: a per-session state
// machine and a single goroutine that runs every session and delivers the
// delayed bot replies.
package chat

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"luxemap/estates/internal/models"
)

// State is the externally visible widget state.
type State string

const (
	StateClosed         State = "closed"
	StateCategories     State = "open/categories"
	StateQuestions      State = "open/questions"
	StateHandoffOffered State = "open/human-handoff-offered"
	StateHumanMode      State = "open/human-mode"
)

type Sender string

const (
	SenderBot    Sender = "bot"
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// Message is one transcript entry. Options carries selectable question texts.
type Message struct {
	ID      int      `json:"id"`
	Sender  Sender   `json:"type"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

const (
	greetingText      = "Hello! 👋 Welcome to LuxeMap. How can I help you today? Choose a topic below:"
	welcomeBackText   = "Hello! 👋 Welcome back. How can I help you today?"
	topicReplyFormat  = "Great! Here are common questions about **%s**:"
	helpfulText       = "Was this helpful? You can ask another question, or connect with a team member."
	anythingElseText  = "Is there anything else I can help you with?"
	talkToHumanText   = "I'd like to talk to someone"
	handoffText       = "Of course! One of our luxury advisors will be with you shortly. You can type your message below, or reach us at **support@luxemap.com** or call **+1 (888) 555-LUXE**."
	notifiedText      = "🔔 A team member has been notified and will join this conversation."
	acknowledgeText   = "Thank you for your message! An advisor is reviewing it now and will respond shortly. Average response time is under 5 minutes."
	humanUnlockAnswer = 2
)

var (
	ErrBusy               = errors.New("a reply is still pending")
	ErrClosed             = errors.New("chat is closed")
	ErrUnknownTopic       = errors.New("unknown topic")
	ErrUnknownQuestion    = errors.New("unknown question")
	ErrHandoffUnavailable = errors.New("talking to a team member is not available yet")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrNotAllowed         = errors.New("action not allowed in the current state")
)

// FAQ is the read-only question bank the machine scripts from.
type FAQ interface {
	FAQTopics() []models.FAQTopic
	FAQTopic(category string) (models.FAQTopic, bool)
	Answer(question string) (string, bool)
}

// Delays are the simulated typing times before each kind of bot reply.
type Delays struct {
	Topic    time.Duration
	Question time.Duration
	Handoff  time.Duration
	Reply    time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		Topic:    600 * time.Millisecond,
		Question: 800 * time.Millisecond,
		Handoff:  time.Second,
		Reply:    1500 * time.Millisecond,
	}
}

type phase int

const (
	phaseCategories phase = iota
	phaseQuestions
	phaseHandoffOffered
	phaseHuman
)

// Pending is a bot reply scheduled by an action. It is applied with Deliver
// once Delay has elapsed.
type Pending struct {
	Delay time.Duration
	apply func(m *Machine)
}

// Machine is the chat state of one visitor. It is not safe for concurrent
// use; Loop serialises access.
type Machine struct {
	faq    FAQ
	delays Delays

	open           bool
	phase          phase
	transcript     []Message
	lastID         int
	answered       int
	humanAvailable bool
	pending        *Pending
	// questions offered by the last delivered topic reply
	offered []string
}

func NewMachine(faq FAQ, delays Delays) *Machine {
	return &Machine{faq: faq, delays: delays}
}

func (m *Machine) append(sender Sender, text string, options []string) {
	m.lastID++
	m.transcript = append(m.transcript, Message{ID: m.lastID, Sender: sender, Text: text, Options: options})
}

func (m *Machine) schedule(d time.Duration, apply func(m *Machine)) *Pending {
	m.pending = &Pending{Delay: d, apply: apply}
	return m.pending
}

// guard rejects conversation actions while closed or while a reply is pending.
func (m *Machine) guard() error {
	if !m.open {
		return ErrClosed
	}
	if m.pending != nil {
		return ErrBusy
	}
	return nil
}

// Deliver applies p if it is still the machine's pending reply. Replies
// discarded by Reset are ignored. It reports whether p was applied.
func (m *Machine) Deliver(p *Pending) bool {
	if p == nil || m.pending != p {
		return false
	}
	m.pending = nil
	p.apply(m)
	return true
}

// Open shows the widget. The first open greets the visitor; later opens
// keep the transcript as it was.
func (m *Machine) Open() (*Pending, error) {
	if m.open {
		return nil, nil
	}
	m.open = true
	if len(m.transcript) == 0 {
		m.append(SenderBot, greetingText, nil)
		m.phase = phaseCategories
	}
	return nil, nil
}

// Close hides the widget without clearing anything. A pending reply is
// still delivered.
func (m *Machine) Close() (*Pending, error) {
	m.open = false
	return nil, nil
}

func (m *Machine) SelectTopic(topic string) (*Pending, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	if m.phase != phaseCategories {
		return nil, ErrNotAllowed
	}
	t, ok := m.faq.FAQTopic(topic)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	m.append(SenderUser, topic, nil)
	options := t.QuestionTexts()
	return m.schedule(m.delays.Topic, func(m *Machine) {
		m.append(SenderBot, fmt.Sprintf(topicReplyFormat, t.Category), options)
		m.offered = options
		m.phase = phaseQuestions
	}), nil
}

func (m *Machine) SelectQuestion(question string) (*Pending, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	if m.phase != phaseQuestions {
		return nil, ErrNotAllowed
	}
	if !slices.Contains(m.offered, question) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestion, question)
	}
	answer, ok := m.faq.Answer(question)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestion, question)
	}

	m.append(SenderUser, question, nil)
	m.answered++
	return m.schedule(m.delays.Question, func(m *Machine) {
		followUp := anythingElseText
		if m.answered >= humanUnlockAnswer && !m.humanAvailable {
			followUp = helpfulText
		}
		m.append(SenderBot, answer, nil)
		m.append(SenderBot, followUp, nil)
		if m.answered >= humanUnlockAnswer {
			m.humanAvailable = true
		}
		m.offered = nil
		m.phase = phaseCategories
	}), nil
}

func (m *Machine) TalkToHuman() (*Pending, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	if !m.humanAvailable {
		return nil, ErrHandoffUnavailable
	}
	if m.phase != phaseCategories && m.phase != phaseQuestions {
		return nil, ErrNotAllowed
	}

	m.append(SenderUser, talkToHumanText, nil)
	m.phase = phaseHandoffOffered
	return m.schedule(m.delays.Handoff, func(m *Machine) {
		m.append(SenderBot, handoffText, nil)
		m.append(SenderSystem, notifiedText, nil)
		m.phase = phaseHuman
	}), nil
}

// SendMessage posts free text to the advisor once in human mode.
func (m *Machine) SendMessage(text string) (*Pending, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	if m.phase != phaseHuman {
		return nil, ErrNotAllowed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	m.append(SenderUser, text, nil)
	return m.schedule(m.delays.Reply, func(m *Machine) {
		m.append(SenderBot, acknowledgeText, nil)
	}), nil
}

// Reset starts a new conversation in the open widget. Any pending reply is
// discarded. Message ids keep counting up.
func (m *Machine) Reset() (*Pending, error) {
	if !m.open {
		return nil, ErrClosed
	}
	m.pending = nil
	m.transcript = nil
	m.append(SenderBot, welcomeBackText, nil)
	m.answered = 0
	m.humanAvailable = false
	m.offered = nil
	m.phase = phaseCategories
	return nil, nil
}

// Snapshot is an immutable view of a Machine.
type Snapshot struct {
	State            State     `json:"state"`
	Open             bool      `json:"open"`
	Transcript       []Message `json:"transcript"`
	Typing           bool      `json:"typing"`
	HandoffAvailable bool      `json:"handoff_available"`
	ShowTopics       bool      `json:"show_topics"`
	Topics           []string  `json:"topics"`
	Answered         int       `json:"answered"`
}

func (m *Machine) State() State {
	if !m.open {
		return StateClosed
	}
	switch m.phase {
	case phaseQuestions:
		return StateQuestions
	case phaseHandoffOffered:
		return StateHandoffOffered
	case phaseHuman:
		return StateHumanMode
	default:
		return StateCategories
	}
}

func (m *Machine) Snapshot() Snapshot {
	transcript := make([]Message, len(m.transcript))
	for i, msg := range m.transcript {
		msg.Options = slices.Clone(msg.Options)
		transcript[i] = msg
	}

	topics := m.faq.FAQTopics()
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Category
	}

	idle := m.pending == nil
	chatting := m.phase == phaseCategories || m.phase == phaseQuestions
	return Snapshot{
		State:            m.State(),
		Open:             m.open,
		Transcript:       transcript,
		Typing:           !idle,
		HandoffAvailable: m.humanAvailable && chatting && idle,
		ShowTopics:       m.phase == phaseCategories && idle,
		Topics:           names,
		Answered:         m.answered,
	}
}
