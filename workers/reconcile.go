package workers

import (
	"context"
	"log"
	"time"

	"ballup-api/models"

	"gorm.io/gorm"
)

// Reconciler repairs cached derived counters against their sources of
// truth. The request path already recomputes counts transactionally; this
// loop is the backstop for drift from crashes mid-transaction or manual
// data surgery.
type Reconciler struct {
	DB *gorm.DB

	// Sweep hook for the in-memory rate-limit store; nil when the
	// deployment uses the shared redis store.
	SweepCounters func() int
}

func NewReconciler(db *gorm.DB, sweep func() int) *Reconciler {
	return &Reconciler{DB: db, SweepCounters: sweep}
}

// Poll runs until the context is cancelled.
func (r *Reconciler) Poll(ctx context.Context, interval time.Duration) {
	log.Println("Starting counter reconciliation worker...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Counter reconciliation stopped.")
			return
		case <-ticker.C:
			fixed := r.reconcileGameCounts()
			if fixed > 0 {
				log.Printf("🔧 Reconciled %d drifted player count(s)", fixed)
			}
			if r.SweepCounters != nil {
				if removed := r.SweepCounters(); removed > 0 {
					log.Printf("🧹 Swept %d expired rate-limit bucket(s)", removed)
				}
			}
		}
	}
}

// reconcileGameCounts recounts participants for every non-terminal game and
// fixes any cached value that drifted.
func (r *Reconciler) reconcileGameCounts() int {
	var games []models.Game
	err := r.DB.
		Where("status NOT IN ?", []string{models.GameCompleted, models.GameCancelled}).
		Find(&games).Error
	if err != nil {
		log.Printf("❌ Reconciler DB error: %v", err)
		return 0
	}

	fixed := 0
	for _, g := range games {
		var count int64
		if err := r.DB.Model(&models.GameParticipant{}).
			Where("game_id = ?", g.ID).
			Count(&count).Error; err != nil {
			log.Printf("❌ Reconciler count error for game %s: %v", g.ID, err)
			continue
		}
		if int(count) == g.CurrentPlayers {
			continue
		}

		log.Printf("⚠️  Game %s player count drifted: cached=%d actual=%d",
			g.ID, g.CurrentPlayers, count)
		if err := r.DB.Model(&models.Game{}).Where("id = ?", g.ID).
			Update("current_players", count).Error; err != nil {
			log.Printf("❌ Reconciler update error for game %s: %v", g.ID, err)
			continue
		}
		fixed++
	}
	return fixed
}
