package giveaway

import (
	"math/rand/v2"

	"rafflebot/internal/storage"
)

// drawWinners picks up to n random participants. Fewer participants than
// winner slots is fine: everyone wins.
func drawWinners(giveawayID int64, participants []storage.Participant, n int) []storage.Winner {
	if len(participants) == 0 || n <= 0 {
		return nil
	}
	if n > len(participants) {
		n = len(participants)
	}

	shuffled := append([]storage.Participant(nil), participants...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	winners := make([]storage.Winner, 0, n)
	for i := 0; i < n; i++ {
		winners = append(winners, storage.Winner{
			GiveawayID: giveawayID,
			UserID:     shuffled[i].UserID,
			Username:   shuffled[i].Username,
			Position:   i + 1,
		})
	}
	return winners
}
