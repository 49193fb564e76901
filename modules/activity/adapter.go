package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ActivityPort reads room activity counters.
type ActivityPort interface {
	GetActivity(ctx context.Context, roomID string) (GetActivityResponse, error)
}

// ActivityAdapter implements ActivityPort using the service container.
type ActivityAdapter struct {
	container mono.ServiceContainer
}

// NewActivityAdapter creates a new ActivityAdapter.
func NewActivityAdapter(container mono.ServiceContainer) ActivityPort {
	if container == nil {
		panic("activity: ServiceContainer is nil")
	}
	return &ActivityAdapter{container: container}
}

func (a *ActivityAdapter) GetActivity(ctx context.Context, roomID string) (GetActivityResponse, error) {
	req := GetActivityRequest{RoomID: roomID}
	var resp GetActivityResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetActivity,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return GetActivityResponse{}, fmt.Errorf("failed to get activity: %w", err)
	}
	return resp, nil
}
