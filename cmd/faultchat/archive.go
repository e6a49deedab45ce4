package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/faultchat/internal/conversation"
	"github.com/kalambet/faultchat/internal/diagnosis"
	"github.com/kalambet/faultchat/internal/storage"
)

// storeArchive records a conversation into the local SQLite archive.
type storeArchive struct {
	store *storage.Store
}

func (a storeArchive) RecordQuery(ctx context.Context, dialogueID string, q diagnosis.Query, at time.Time) error {
	_, err := a.store.SaveQuery(ctx, storage.Query{
		DialogueID: dialogueID,
		Text:       q.Text,
		Engine:     string(q.Engine),
		CreatedAt:  at,
	})
	return err
}

func (a storeArchive) RecordEntry(ctx context.Context, dialogueID string, e conversation.Entry) error {
	payload, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	return a.store.SaveTurn(ctx, storage.Turn{
		DialogueID:  dialogueID,
		Seq:         e.Seq,
		Role:        string(e.Role),
		Kind:        entryKind(e),
		Text:        e.Content.Text,
		PayloadJSON: string(payload),
		CreatedAt:   e.At,
	})
}

func entryKind(e conversation.Entry) string {
	switch {
	case e.Role == conversation.RoleUser:
		return "query"
	case e.Content.Diagnosis != nil:
		return conversation.OutcomeDiagnosis.String()
	case e.Content.Clarification != nil:
		return conversation.OutcomeClarification.String()
	case e.Content.Failure != "":
		return conversation.OutcomeFailure.String()
	}
	return ""
}
