package chatws

import (
	"strconv"

	"github.com/saeid-a/TutorLinkBack/internal/logging"
	"github.com/saeid-a/TutorLinkBack/internal/models"
	"github.com/saeid-a/TutorLinkBack/internal/services"
)

// Publisher delivers an encoded event to every live connection of a user.
// *Registry publishes in-process, *RedisBridge across instances.
type Publisher interface {
	Publish(userID string, payload []byte) int
}

// Dispatcher turns domain events into push frames. Delivery is fire and
// forget: there is no acknowledgement and nothing is kept for offline users,
// clients recover missed state from the paginated endpoints.
type Dispatcher struct {
	publisher Publisher
	logger    logging.Logger
}

func NewDispatcher(publisher Publisher, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Discard{}
	}
	return &Dispatcher{publisher: publisher, logger: logger}
}

// Publish encodes event and hands it to the publisher for userID.
func (d *Dispatcher) Publish(userID int64, event Event) int {
	payload, err := encodeEvent(event)
	if err != nil {
		d.logger.Error("push: encode event", event.Type, err)
		return 0
	}
	return d.publisher.Publish(strconv.FormatInt(userID, 10), payload)
}

// MessageSent pushes the message to the recipient and to the sender's other
// connections, which keeps every open tab of the sender in order as well.
func (d *Dispatcher) MessageSent(delivery *services.ChatDelivery) {
	if delivery == nil || delivery.Message == nil {
		return
	}

	event := NewMessageEvent(*delivery.Message, delivery.RecipientID)
	d.Publish(delivery.RecipientID, event)
	if delivery.Message.SenderID != delivery.RecipientID {
		d.Publish(delivery.Message.SenderID, event)
	}
}

func (d *Dispatcher) NotificationCreated(notification *models.Notification) {
	if notification == nil {
		return
	}
	d.Publish(notification.ReceiverID, NewNotificationEvent(*notification))
}
