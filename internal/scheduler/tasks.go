package scheduler

import (
	"encoding/json"
	"fmt"

	msgdomain "billing_chat_backend/internal/messaging/domain"

	"github.com/hibiken/asynq"
)

const TaskSendMessage = "messaging.send"

func NewSendMessageTask(message msgdomain.OutboundMessage) (*asynq.Task, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendMessage, data), nil
}

func ParseSendMessagePayload(task *asynq.Task) (msgdomain.OutboundMessage, error) {
	var message msgdomain.OutboundMessage
	if err := json.Unmarshal(task.Payload(), &message); err != nil {
		return msgdomain.OutboundMessage{}, err
	}
	if message.Destination == "" {
		return msgdomain.OutboundMessage{}, fmt.Errorf("send message task %s has no destination", message.ID)
	}
	return message, nil
}
