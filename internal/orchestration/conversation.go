package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconflow/beaconflow/internal/models"
)

var (
	// ErrConversationNotFound is returned for unknown conversation ids
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrNotParticipant is returned when a sender or recipient is not
	// part of the conversation
	ErrNotParticipant = errors.New("agent is not a conversation participant")
)

// ConversationStatus represents a conversation's lifecycle state
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationWaiting   ConversationStatus = "waiting_for_response"
	ConversationCompleted ConversationStatus = "completed"
)

// Conversation is a message thread between a fixed set of agents
type Conversation struct {
	ID           string             `json:"id"`
	Topic        string             `json:"topic"`
	Participants []string           `json:"participants"`
	Messages     []models.Message   `json:"messages"`
	Status       ConversationStatus `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastActivity time.Time          `json:"lastActivity"`
}

// MessageHandler processes a message addressed to an agent and
// optionally returns a reply
type MessageHandler func(ctx context.Context, msg *models.Message) (*models.Message, error)

// ConversationManager routes messages between agents. Delivery is
// asynchronous: senders return immediately, handlers run on the
// dispatcher. Handler failures are logged, never propagated.
type ConversationManager struct {
	handlers      map[string]MessageHandler
	conversations map[string]*Conversation
	dispatcher    *Dispatcher
	logger        *zap.Logger
	mu            sync.RWMutex
}

// NewConversationManager creates a conversation manager
func NewConversationManager(dispatcher *Dispatcher, logger *zap.Logger) *ConversationManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConversationManager{
		handlers:      make(map[string]MessageHandler),
		conversations: make(map[string]*Conversation),
		dispatcher:    dispatcher,
		logger:        logger.With(zap.String("component", "conversations")),
	}
}

// RegisterHandler registers the message handler for an agent.
// Re-registering replaces the previous handler.
func (m *ConversationManager) RegisterHandler(agentID string, handler MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[agentID] = handler
}

// StartConversation creates a conversation between the initiator and
// the target agents and asynchronously delivers the opening message to
// the first target. The initiator is always a participant.
func (m *ConversationManager) StartConversation(ctx context.Context, initiator string, targets []string, topic, content string) (*Conversation, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one target agent is required")
	}

	participants := append([]string{initiator}, targets...)

	conv := &Conversation{
		ID:           uuid.NewString(),
		Topic:        topic,
		Participants: participants,
		Status:       ConversationActive,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		FromAgent:      initiator,
		ToAgent:        targets[0],
		Type:           models.MessageQuestion,
		Content:        content,
		Timestamp:      time.Now(),
	}
	conv.Messages = append(conv.Messages, msg)

	m.mu.Lock()
	m.conversations[conv.ID] = conv
	m.mu.Unlock()

	m.logger.Info("conversation started",
		zap.String("conversation", conv.ID),
		zap.String("topic", topic),
		zap.Strings("participants", participants))

	m.deliver(msg)

	return conv, nil
}

// SendMessage appends a message to an existing conversation and
// asynchronously delivers it. Both sender and recipient must be
// participants.
func (m *ConversationManager) SendMessage(ctx context.Context, conversationID, from, to string, msgType models.MessageType, content string, data map[string]interface{}) (*models.Message, error) {
	m.mu.Lock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	if !isParticipant(conv, from) {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotParticipant, from)
	}
	if !isParticipant(conv, to) {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotParticipant, to)
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		FromAgent:      from,
		ToAgent:        to,
		Type:           msgType,
		Content:        content,
		Data:           data,
		Timestamp:      time.Now(),
	}

	conv.Messages = append(conv.Messages, msg)
	conv.Status = ConversationWaiting
	conv.LastActivity = time.Now()
	m.mu.Unlock()

	m.deliver(msg)

	return &msg, nil
}

// deliver schedules handler execution for a message
func (m *ConversationManager) deliver(msg models.Message) {
	err := m.dispatcher.Enqueue(func() {
		m.processMessage(msg)
	})
	if err != nil {
		m.logger.Warn("failed to enqueue delivery",
			zap.String("conversation", msg.ConversationID),
			zap.Error(err))
	}
}

// processMessage invokes the recipient's handler and records the reply.
// A missing handler drops the message; a handler error is swallowed.
func (m *ConversationManager) processMessage(msg models.Message) {
	m.mu.RLock()
	handler, ok := m.handlers[msg.ToAgent]
	m.mu.RUnlock()

	if !ok {
		m.logger.Warn("no handler registered for agent",
			zap.String("agent", msg.ToAgent),
			zap.String("conversation", msg.ConversationID))
		return
	}

	reply, err := handler(context.Background(), &msg)
	if err != nil {
		m.logger.Warn("message handler failed",
			zap.String("agent", msg.ToAgent),
			zap.String("conversation", msg.ConversationID),
			zap.Error(err))
		return
	}

	if reply == nil {
		return
	}

	reply.ID = uuid.NewString()
	reply.ConversationID = msg.ConversationID
	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[msg.ConversationID]
	if !ok {
		return
	}

	conv.Messages = append(conv.Messages, *reply)
	conv.LastActivity = time.Now()

	if reply.Type == models.MessageResponse {
		conv.Status = ConversationCompleted
	} else {
		conv.Status = ConversationActive
	}
}

// Get returns a conversation by id
func (m *ConversationManager) Get(id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return conv, nil
}

// ActiveConversations returns conversations that have not completed
func (m *ConversationManager) ActiveConversations() []*Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*Conversation
	for _, conv := range m.conversations {
		if conv.Status != ConversationCompleted {
			active = append(active, conv)
		}
	}
	return active
}

// CleanupOld removes completed conversations whose last activity is
// older than maxAge. Active conversations are never removed regardless
// of age. Returns the number of conversations removed.
func (m *ConversationManager) CleanupOld(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, conv := range m.conversations {
		if conv.Status == ConversationCompleted && conv.LastActivity.Before(cutoff) {
			delete(m.conversations, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("cleaned up old conversations", zap.Int("removed", removed))
	}

	return removed
}

func isParticipant(conv *Conversation, agentID string) bool {
	for _, p := range conv.Participants {
		if p == agentID {
			return true
		}
	}
	return false
}
