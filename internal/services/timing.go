package services

import (
	"time"

	log "github.com/sirupsen/logrus"
)

func TrackTime(funcName string, start time.Time) {
	elapsed := time.Since(start)
	log.Debugf("%s took %d ms", funcName, elapsed.Milliseconds())
}

// trackStage logs the elapsed time of one pipeline stage for an asset.
func trackStage(stage string, assetID int64, start time.Time) {
	log.WithFields(log.Fields{
		"stage":      stage,
		"asset_id":   assetID,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("pipeline stage done")
}
