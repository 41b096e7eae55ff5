package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xabbuh/studip-experience-api-plugin/internal/codec"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// persistAttachment writes one attachment row and its association row.
// Every save creates fresh attachment rows; position keeps the order.
func persistAttachment(ctx context.Context, q sqlx.ExtContext, att xapi.Attachment, statementRowID int64, position int) error {
	const op = "persist attachment"

	switch {
	case att.UsageType == "":
		return errInvalid(op, "attachment %d has no usage type", position)
	case att.ContentType == "":
		return errInvalid(op, "attachment %d has no content type", position)
	case att.SHA2 == "":
		return errInvalid(op, "attachment %d has no sha2", position)
	case att.Length < 0:
		return errInvalid(op, "attachment %d has negative length", position)
	}

	display, err := codec.EncodeLanguageMap(att.Display)
	if err != nil {
		return newError(KindInvalid, op, err, "attachment display")
	}
	row := attachmentRow{
		UsageType:   string(att.UsageType),
		ContentType: att.ContentType,
		Length:      att.Length,
		SHA2:        att.SHA2,
		Display:     display,
		FileURL:     nullString(string(att.FileURL)),
	}
	if len(att.Description) > 0 {
		description, err := codec.EncodeLanguageMap(att.Description)
		if err != nil {
			return newError(KindInvalid, op, err, "attachment description")
		}
		row.Description = sql.NullString{String: description, Valid: true}
	}
	if len(att.Content) > 0 {
		row.Content = att.Content
	}

	attachmentID, err := insertNamed(ctx, q, op, insertAttachmentSQL, row)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO xapi_statement_attachments (statement_id, attachment_id, position)
		VALUES (?, ?, ?)
	`), statementRowID, attachmentID, position)
	if err != nil {
		return errUnavailable(op, err)
	}
	return nil
}

// loadAttachments returns a statement's attachments in position order, or
// nil when it has none.
func loadAttachments(ctx context.Context, q sqlx.ExtContext, statementRowID int64) ([]xapi.Attachment, error) {
	const op = "load attachments"

	var rows []attachmentRow
	err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(`
		SELECT a.id, a.usage_type, a.content_type, a.length, a.sha2, a.display, a.description, a.file_url, a.content
		FROM xapi_attachments a
		JOIN xapi_statement_attachments sa ON sa.attachment_id = a.id
		WHERE sa.statement_id = ?
		ORDER BY sa.position ASC
	`), statementRowID)
	if err != nil {
		return nil, errUnavailable(op, err)
	}

	var attachments []xapi.Attachment
	for _, row := range rows {
		display, err := codec.DecodeLanguageMap(row.Display)
		if err != nil {
			return nil, newError(KindDataIntegrity, op, err, "attachment row %d display", row.ID)
		}
		description, err := codec.DecodeLanguageMap(row.Description.String)
		if err != nil {
			return nil, newError(KindDataIntegrity, op, err, "attachment row %d description", row.ID)
		}
		att := xapi.Attachment{
			UsageType:   xapi.IRI(row.UsageType),
			ContentType: row.ContentType,
			Length:      row.Length,
			SHA2:        row.SHA2,
			Display:     display,
			Description: description,
			FileURL:     xapi.IRI(row.FileURL.String),
		}
		if len(row.Content) > 0 {
			att.Content = row.Content
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}
