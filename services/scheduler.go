// services/scheduler.go
package services

import (
	"log"
	"time"

	"ballup-api/models"
	"ballup-api/realtime"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// startingLead is how far before tip-off a game flips to "starting".
const startingLead = 15 * time.Minute

// StartStatusScheduler drives the game state machine every minute:
// scheduled → starting → active → completed. Cancellation stays a creator
// action; everything else is time-driven.
func (s *GameService) StartStatusScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.advanceGameStatuses),
	)
}

func (s *GameService) advanceGameStatuses() {
	now := time.Now()

	s.transition(models.GameScheduled, models.GameStarting,
		"status = ? AND scheduled_time <= ?", models.GameScheduled, now.Add(startingLead))

	s.transition(models.GameStarting, models.GameActive,
		"status = ? AND scheduled_time <= ?", models.GameStarting, now)

	// Completion depends on per-game duration, so it is decided in Go
	// rather than in a portable WHERE clause.
	var active []models.Game
	if err := s.DB.Where("status = ?", models.GameActive).Find(&active).Error; err != nil {
		log.Printf("[Scheduler] DB error: %v", err)
		return
	}
	for _, g := range active {
		endsAt := g.ScheduledTime.Add(time.Duration(g.DurationMinutes) * time.Minute)
		if endsAt.After(now) {
			continue
		}
		if err := s.completeGame(&g); err != nil {
			log.Printf("[Scheduler] Failed to complete game %s: %v", g.ID, err)
		}
	}
}

func (s *GameService) transition(from, to, query string, args ...any) {
	var games []models.Game
	if err := s.DB.Where(query, args...).Find(&games).Error; err != nil {
		log.Printf("[Scheduler] DB error: %v", err)
		return
	}

	for _, g := range games {
		if err := s.DB.Model(&g).Update("status", to).Error; err != nil {
			log.Printf("[Scheduler] Failed to move game %s %s→%s: %v", g.ID, from, to, err)
			continue
		}
		s.Publisher.Publish(realtime.GameTopic(g.ID), realtime.Event{
			Type:    realtime.EventGameUpdated,
			Payload: map[string]any{"game_id": g.ID, "status": to},
		})
		log.Printf("✅ Game %s moved %s → %s", g.ID, from, to)
	}
}

// completeGame closes the game and credits every participant's
// games-played counter in one transaction.
func (s *GameService) completeGame(g *models.Game) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(g).Update("status", models.GameCompleted).Error; err != nil {
			return err
		}

		var participants []models.GameParticipant
		if err := tx.Where("game_id = ?", g.ID).Find(&participants).Error; err != nil {
			return err
		}
		for _, p := range participants {
			if err := tx.Model(&models.User{}).Where("id = ?", p.UserID).
				Update("games_played", gorm.Expr("games_played + 1")).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Publisher.Publish(realtime.GameTopic(g.ID), realtime.Event{
		Type:    realtime.EventGameUpdated,
		Payload: map[string]any{"game_id": g.ID, "status": models.GameCompleted},
	})
	log.Printf("✅ Game %s completed", g.ID)
	return nil
}
