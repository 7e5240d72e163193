package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lectorium/workshop/internal/application/metric"
	"github.com/lectorium/workshop/internal/domain/signal"
	"github.com/lectorium/workshop/internal/infra/adapters/postgres/repository"
	"github.com/lectorium/workshop/internal/registry"
)

// SignalingUsecase mediates between the websocket port and the room
// registry/relay: admission is checked against scheduled workshops, the
// rest is registry semantics plus metrics.
type SignalingUsecase interface {
	HandleJoin(ctx context.Context, roomKey string, t registry.Transport) (*registry.Member, error)
	HandleLeave(roomKey, memberID string)
	HandleForward(roomKey, senderID string, msg signal.Message) error
}

type signalingUsecase struct {
	workshopRepo repository.WorkshopRepository

	reg   *registry.Registry
	relay *registry.Relay
}

func NewSignalingUsecase(
	workshopRepo repository.WorkshopRepository,
	reg *registry.Registry,
	relay *registry.Relay,
) SignalingUsecase {
	return &signalingUsecase{
		workshopRepo: workshopRepo,
		reg:          reg,
		relay:        relay,
	}
}

func (s *signalingUsecase) HandleJoin(ctx context.Context, roomKey string, t registry.Transport) (*registry.Member, error) {
	workshopID, err := uuid.Parse(roomKey)
	if err != nil {
		return nil, fmt.Errorf("invalid room key %q: %w", roomKey, err)
	}

	if _, err := s.workshopRepo.GetByID(ctx, workshopID); err != nil {
		return nil, fmt.Errorf("lookup workshop %s: %w", workshopID, err)
	}

	member, err := s.reg.Join(roomKey, t)
	if err != nil {
		if errors.Is(err, registry.ErrRoomFull) {
			metric.IncrementRejects()
		}
		return nil, err
	}

	metric.IncrementJoins()
	metric.SetActiveRooms(s.reg.RoomCount())

	return member, nil
}

func (s *signalingUsecase) HandleLeave(roomKey, memberID string) {
	s.reg.Leave(roomKey, memberID)
	metric.SetActiveRooms(s.reg.RoomCount())
}

func (s *signalingUsecase) HandleForward(roomKey, senderID string, msg signal.Message) error {
	if err := s.relay.Forward(roomKey, senderID, msg); err != nil {
		return err
	}

	metric.IncrementRelayed(string(msg.Intent))

	return nil
}
