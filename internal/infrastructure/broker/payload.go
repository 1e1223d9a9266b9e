package broker

import domain "main/internal/domain/entity/marketplace"

type eventMessage struct {
	Event *domain.Event `json:"event,omitempty"`
}
