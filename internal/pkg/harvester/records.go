package harvester

import (
	"os"
	"path/filepath"

	"github.com/dlsciences/oaih/internal/pkg/oai"
	"github.com/dlsciences/oaih/internal/utils"
)

// processRecord persists one harvested record. It reports whether the
// record was saved (counted) and whether it was a deletion. A record
// only counts as saved once every set directory it belongs to has been
// written successfully.
func (h *Harvester) processRecord(req *Request, record *oai.Record) (saved, deleted bool, err error) {
	id := record.Header.Identifier
	if id == "" {
		return false, false, &oai.ProtocolError{Reason: "a record in the response has no identifier"}
	}

	if record.Header.Deleted() {
		return false, true, h.deleteRecord(req, record)
	}

	content := record.Metadata.Content()
	if content == "" {
		h.logger.Warn("skipping a record with no metadata", "identifier", id)
		return false, false, nil
	}

	if req.OutputDir == "" {
		h.memory = append(h.memory, MemoryRecord{
			ID:      oai.EncodeIdentifier(id),
			Content: content,
		})
		h.listener.OnRecordCreate("", record)
		return true, false, nil
	}

	encodedID := oai.EncodeIdentifier(id)
	for _, dir := range h.recordDirs(req, record) {
		if err := h.writeRecord(dir, encodedID, content, req.WriteHeaders, record); err != nil {
			return false, false, err
		}
	}
	return true, false, nil
}

// recordDirs returns the directories a record belongs in. With
// SplitBySet each of the record's setSpecs maps to a subdirectory; a
// record in no set goes to the output directory itself.
func (h *Harvester) recordDirs(req *Request, record *oai.Record) []string {
	if !req.SplitBySet {
		return []string{req.OutputDir}
	}

	sets := record.Header.SetSpec
	if len(sets) == 0 {
		sets = []string{""}
	}

	dirs := make([]string, 0, len(sets))
	for _, set := range sets {
		if set == "" {
			dirs = append(dirs, req.OutputDir)
		} else {
			dirs = append(dirs, filepath.Join(req.OutputDir, oai.EncodeIdentifier(set)))
		}
	}
	return dirs
}

func (h *Harvester) writeRecord(dir, encodedID, content string, writeHeader bool, record *oai.Record) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return newStorageError(dir, err)
	}

	path := filepath.Join(dir, encodedID+".xml")
	data := []byte(content)

	exists, same, err := utils.SameFileContent(path, data)
	if err != nil {
		return newStorageError(path, err)
	}

	if exists && same {
		h.listener.OnRecordExistsNoChange(path, record)
		return nil
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return newStorageError(path, err)
	}
	if writeHeader {
		hdrPath := filepath.Join(dir, encodedID+"_hdr.xml")
		if err := os.WriteFile(hdrPath, []byte(record.Header.XML()), 0644); err != nil {
			return newStorageError(hdrPath, err)
		}
	}

	if exists {
		h.listener.OnRecordChange(path, record)
	} else {
		h.listener.OnRecordCreate(path, record)
	}
	return nil
}

// deleteRecord removes the on-disk files of a record the provider
// reports as deleted. Missing files are not an error: the record may
// never have been harvested, or was removed by an earlier cycle.
func (h *Harvester) deleteRecord(req *Request, record *oai.Record) error {
	if req.OutputDir == "" {
		h.memory = append(h.memory, MemoryRecord{
			ID:      oai.EncodeIdentifier(record.Header.Identifier),
			Deleted: true,
		})
		h.listener.OnRecordDelete("", record)
		return nil
	}

	encodedID := oai.EncodeIdentifier(record.Header.Identifier)
	for _, dir := range h.recordDirs(req, record) {
		path := filepath.Join(dir, encodedID+".xml")

		removed, err := removeIfExists(path)
		if err != nil {
			return newStorageError(path, err)
		}
		hdrPath := filepath.Join(dir, encodedID+"_hdr.xml")
		if _, err := removeIfExists(hdrPath); err != nil {
			return newStorageError(hdrPath, err)
		}
		if removed {
			h.listener.OnRecordDelete(path, record)
		}
	}
	return nil
}

func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
