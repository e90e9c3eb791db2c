package service

import "github.com/Shivanand-hulikatti/event-reservations/internal/model"

// lowSpotsRatio is the share of capacity at or below which an event counts as
// running low.
const lowSpotsRatio = 10 // percent

// LowSpotsThreshold returns ceil(maxCapacity * 10%).
func LowSpotsThreshold(maxCapacity int) int {
	return (maxCapacity*lowSpotsRatio + 99) / 100
}

// Classify maps a counter transition to the threshold notifications it
// crosses. Notifications are edge-triggered: staying inside a condition
// emits nothing.
func Classify(previous, available, maxCapacity int) []model.NotificationKind {
	var kinds []model.NotificationKind

	if available == 0 && previous > 0 {
		kinds = append(kinds, model.KindSoldOut)
	}

	if previous == 0 && available == 1 {
		kinds = append(kinds, model.KindSpotsAvailable)
	}

	threshold := LowSpotsThreshold(maxCapacity)
	isLow := available > 0 && available <= threshold
	wasLow := previous > 0 && previous <= threshold
	if isLow && !wasLow {
		kinds = append(kinds, model.KindLowSpots)
	}

	return kinds
}
