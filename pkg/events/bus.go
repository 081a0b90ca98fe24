package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"ai-tutor-be/internal/pkg/logger"
)

// HealthBus bridges the dispatcher to the backend registry over the in-process
// pub/sub channel. Publishing is fire-and-forget; a dropped signal only delays
// the next availability update.
type HealthBus struct {
	pubSub *gochannel.GoChannel
	log    logger.ILogger
}

func NewHealthBus(pubSub *gochannel.GoChannel, log logger.ILogger) *HealthBus {
	return &HealthBus{pubSub: pubSub, log: log}
}

func (b *HealthBus) PublishHealth(sig HealthSignal) {
	data, err := sig.Marshal()
	if err != nil {
		b.log.Error("events", "failed to marshal health signal", map[string]interface{}{
			"backend": sig.BackendId,
			"error":   err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.pubSub.Publish(TopicBackendHealth, msg); err != nil {
		b.log.Warn("events", "failed to publish health signal", map[string]interface{}{
			"backend": sig.BackendId,
			"error":   err.Error(),
		})
	}
}
