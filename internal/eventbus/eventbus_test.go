package eventbus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDLQEnvelopeShape(t *testing.T) {
	type original struct {
		WindowID string `json:"window_id"`
	}
	body, err := json.Marshal(original{WindowID: "w1"})
	assert.NoError(t, err)

	envelope := struct {
		OriginalTopic string          `json:"original_topic"`
		Reason        string          `json:"reason"`
		Payload       json.RawMessage `json:"payload"`
	}{OriginalTopic: TopicWindowClosed, Reason: "permanent handler failure", Payload: body}

	marshaled, err := json.Marshal(envelope)
	assert.NoError(t, err)

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal(marshaled, &decoded))
	assert.Equal(t, TopicWindowClosed, decoded["original_topic"])
	assert.Equal(t, "permanent handler failure", decoded["reason"])
}

func TestTopicConstantsAreDistinct(t *testing.T) {
	topics := []string{
		TopicWindowClosed, TopicSettlementRequested, TopicSettlementCompleted,
		TopicReconciliationTier1, TopicReconciliationEOD, TopicReconciliationBreaker, TopicDLQ,
	}
	seen := map[string]bool{}
	for _, topic := range topics {
		assert.False(t, seen[topic], "duplicate topic constant: %s", topic)
		seen[topic] = true
	}
}
