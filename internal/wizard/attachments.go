// internal/wizard/attachments.go
package wizard

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/docucontrol/tramites-portal/internal/models"
)

// DocumentSlot is one selectable document with its pending attachment, if
// any. Additional slots come from the category rules.
type DocumentSlot struct {
	Requirement models.DocumentRequirement `json:"requirement"`
	Additional  bool                       `json:"additional"`
	Attachment  *models.AttachmentFile     `json:"attachment,omitempty"`
}

// documentList lists the procedure's required documents followed by the
// additional ones for the current data. This is also the upload order.
func (w *Wizard) documentList() []DocumentSlot {
	slots := make([]DocumentSlot, 0, len(w.procedure.RequiredDocuments))
	for _, doc := range w.procedure.RequiredDocuments {
		slots = append(slots, DocumentSlot{Requirement: doc})
	}
	for _, doc := range w.rules.AdditionalDocuments(w.details) {
		slots = append(slots, DocumentSlot{Requirement: doc, Additional: true})
	}
	return slots
}

func (w *Wizard) documentSlots() []DocumentSlot {
	slots := w.documentList()
	for i := range slots {
		if file, ok := w.attachments[slots[i].Requirement.ID]; ok {
			f := file
			slots[i].Attachment = &f
		}
	}
	return slots
}

func (w *Wizard) requirement(documentID string) (models.DocumentRequirement, bool) {
	if doc, ok := w.procedure.Document(documentID); ok {
		return doc, true
	}
	for _, doc := range w.rules.AdditionalDocuments(w.details) {
		if doc.ID == documentID {
			return doc, true
		}
	}
	return models.DocumentRequirement{}, false
}

func (w *Wizard) missingMandatory() []models.DocumentRequirement {
	missing := []models.DocumentRequirement{}
	for _, slot := range w.documentList() {
		if !slot.Requirement.Mandatory {
			continue
		}
		if _, ok := w.attachments[slot.Requirement.ID]; !ok {
			missing = append(missing, slot.Requirement)
		}
	}
	return missing
}

// MissingMandatoryDocuments lists mandatory documents without an attachment.
// They never block advancing.
func (w *Wizard) MissingMandatoryDocuments() []models.DocumentRequirement {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.missingMandatory()
}

// SelectAttachment validates file against the document's accepted formats
// and size limit. A rejected file removes any previous selection for the
// document and returns *FileRejectedError; the rejected handle is released.
func (w *Wizard) SelectAttachment(documentID string, file models.AttachmentFile) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.editable(); err != nil {
		releaseFile(w.logger, documentID, file)
		return err
	}

	req, ok := w.requirement(documentID)
	if !ok {
		releaseFile(w.logger, documentID, file)
		return fmt.Errorf("%w: %s", ErrUnknownDocument, documentID)
	}

	if reason := checkFile(req, file); reason != "" {
		if previous, exists := w.attachments[documentID]; exists {
			w.release(documentID, previous)
			delete(w.attachments, documentID)
		}
		releaseFile(w.logger, documentID, file)
		return &FileRejectedError{
			DocumentID: documentID,
			FileName:   file.Name,
			Reason:     reason,
			Formats:    req.FormatsLabel(),
			MaxSize:    models.FormatFileSize(maxSize(req)),
		}
	}

	if previous, exists := w.attachments[documentID]; exists {
		w.release(documentID, previous)
	}
	w.attachments[documentID] = file
	return nil
}

// ClearAttachment drops the selection for a document. Clearing an empty slot
// is not an error.
func (w *Wizard) ClearAttachment(documentID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.editable(); err != nil {
		return err
	}
	if _, ok := w.requirement(documentID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, documentID)
	}
	if previous, exists := w.attachments[documentID]; exists {
		w.release(documentID, previous)
		delete(w.attachments, documentID)
	}
	return nil
}

// pruneAttachments drops selections whose document slot disappeared after a
// change of the category data.
func (w *Wizard) pruneAttachments() {
	for id, file := range w.attachments {
		if _, ok := w.requirement(id); !ok {
			w.release(id, file)
			delete(w.attachments, id)
		}
	}
}

func maxSize(req models.DocumentRequirement) int64 {
	if req.MaxSizeBytes <= 0 {
		return models.DefaultMaxDocumentSize
	}
	return req.MaxSizeBytes
}

func checkFile(req models.DocumentRequirement, file models.AttachmentFile) string {
	if !req.AcceptsFile(file.Name, file.ContentType) {
		return RejectInvalidType
	}
	if file.Size > maxSize(req) {
		return RejectTooLarge
	}
	return ""
}

func (w *Wizard) release(documentID string, file models.AttachmentFile) {
	releaseFile(w.logger, documentID, file)
}

func releaseFile(logger *logrus.Entry, documentID string, file models.AttachmentFile) {
	r, ok := file.Handle.(models.Releaser)
	if !ok {
		return
	}
	if err := r.Release(); err != nil {
		logger.WithError(err).WithField("document_id", documentID).Warn("Failed to release staged file")
	}
}
