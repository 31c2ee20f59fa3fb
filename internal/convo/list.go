package convo

import (
	"context"

	"go.uber.org/zap"
)

// ListController drives the conversation list: fetch, merge into state,
// surface errors without discarding what is already on screen.
type ListController struct {
	svc    *Service
	state  *State
	logger *zap.Logger
}

func NewListController(svc *Service, state *State, logger *zap.Logger) *ListController {
	return &ListController{svc: svc, state: state, logger: logger}
}

// Load fetches the conversation list and replaces the state's copy. A fetch
// already in flight makes this a no-op; a failed fetch keeps the stale list
// visible and records the error.
func (c *ListController) Load(ctx context.Context) {
	if !c.state.BeginListLoad() {
		return
	}
	defer c.state.SetListLoading(false)

	list, err := c.svc.ListConversations(ctx)
	if err != nil {
		c.logger.Warn("conversation list fetch failed", zap.Error(err))
		c.state.SetListError("Could not refresh conversations")
		return
	}
	c.state.SetListError("")
	c.state.SetConversations(list, true)
}
