package harvester

import "github.com/dlsciences/oaih/internal/pkg/oai"

// ChangeListener is notified of the effect each harvested record had
// on the output directory. Paths are empty for in-memory harvests.
type ChangeListener interface {
	// OnRecordCreate fires when a record was written that did not
	// exist on disk before.
	OnRecordCreate(path string, record *oai.Record)

	// OnRecordChange fires when a record replaced an on-disk file
	// with different content.
	OnRecordChange(path string, record *oai.Record)

	// OnRecordExistsNoChange fires when the harvested record is byte
	// identical to the on-disk file.
	OnRecordExistsNoChange(path string, record *oai.Record)

	// OnRecordDelete fires when a deleted-status record caused the
	// on-disk file to be removed.
	OnRecordDelete(path string, record *oai.Record)
}

// NopChangeListener ignores all record events.
type NopChangeListener struct{}

func (NopChangeListener) OnRecordCreate(string, *oai.Record)         {}
func (NopChangeListener) OnRecordChange(string, *oai.Record)         {}
func (NopChangeListener) OnRecordExistsNoChange(string, *oai.Record) {}
func (NopChangeListener) OnRecordDelete(string, *oai.Record)         {}
