package repository

import "github.com/ca-srg/tosage/domain/entity"

// SettingsRepository is the Settings Snapshot capability set (§6.2). Reads
// must return a fresh snapshot; the dispatcher does not rely on
// implementation-level caching coherence across requests.
type SettingsRepository interface {
	Get() (*entity.Settings, error)
	Save(settings *entity.Settings) error
}
