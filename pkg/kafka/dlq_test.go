package kafka

import (
	"testing"
)

func TestDLQTopicPrefix(t *testing.T) {
	if DLQTopicPrefix != "ratings.dlq" {
		t.Errorf("DLQTopicPrefix = %q, want %q", DLQTopicPrefix, "ratings.dlq")
	}
}

func TestDLQTopic(t *testing.T) {
	tests := []struct {
		name          string
		originalTopic string
		want          string
	}{
		{
			name:          "standard topic",
			originalTopic: "ratings.rating.submitted",
			want:          "ratings.dlq.ratings.rating.submitted",
		},
		{
			name:          "simple topic name",
			originalTopic: "ratings_events",
			want:          "ratings.dlq.ratings_events",
		},
		{
			name:          "deeply nested topic",
			originalTopic: "ratings.stats.rebuild.requested",
			want:          "ratings.dlq.ratings.stats.rebuild.requested",
		},
		{
			name:          "topic with hyphens",
			originalTopic: "rating-events",
			want:          "ratings.dlq.rating-events",
		},
		{
			name:          "empty topic",
			originalTopic: "",
			want:          "ratings.dlq.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DLQTopic(tt.originalTopic)
			if got != tt.want {
				t.Errorf("DLQTopic(%q) = %q, want %q", tt.originalTopic, got, tt.want)
			}
		})
	}
}

func TestDLQTopic_ContainsPrefix(t *testing.T) {
	topic := DLQTopic("some.topic")
	if len(topic) <= len(DLQTopicPrefix) {
		t.Fatalf("DLQTopic result %q should be longer than prefix %q", topic, DLQTopicPrefix)
	}
	prefix := topic[:len(DLQTopicPrefix)]
	if prefix != DLQTopicPrefix {
		t.Errorf("DLQTopic(%q) prefix = %q, want %q", "some.topic", prefix, DLQTopicPrefix)
	}
}
