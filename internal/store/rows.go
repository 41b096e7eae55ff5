package store

import (
	"database/sql"
	"strings"
	"time"
)

// actorRow mirrors one xapi_actors row.
type actorRow struct {
	ID              int64          `db:"id"`
	GroupID         sql.NullInt64  `db:"group_id"`
	MemberPosition  sql.NullInt64  `db:"member_position"`
	Type            string         `db:"type"`
	Name            sql.NullString `db:"name"`
	Mbox            sql.NullString `db:"mbox"`
	MboxSHA1Sum     sql.NullString `db:"mbox_sha1_sum"`
	OpenID          sql.NullString `db:"open_id"`
	HasAccount      bool           `db:"has_account"`
	AccountName     sql.NullString `db:"account_name"`
	AccountHomePage sql.NullString `db:"account_home_page"`
}

const actorColumns = `id, group_id, member_position, type, name, mbox, mbox_sha1_sum,
	open_id, has_account, account_name, account_home_page`

const insertActorSQL = `
	INSERT INTO xapi_actors
	(group_id, member_position, type, name, mbox, mbox_sha1_sum, open_id, has_account, account_name, account_home_page)
	VALUES (:group_id, :member_position, :type, :name, :mbox, :mbox_sha1_sum, :open_id, :has_account, :account_name, :account_home_page)
	RETURNING id
`

// statementRow mirrors one xapi_statements row.
type statementRow struct {
	ID             int64  `db:"id"`
	UUID           string `db:"uuid"`
	LRSID          int64  `db:"lrs_id"`
	IsSubStatement bool   `db:"is_sub_statement"`
	ActorID        int64  `db:"actor_id"`

	verbCols
	objectCols
	resultCols

	AuthorityID sql.NullInt64 `db:"authority_id"`
	Created     sql.NullInt64 `db:"created"`
	Stored      int64         `db:"stored"`
}

// verbCols are the Verb/Result mapper's verb columns.
type verbCols struct {
	VerbIRI     string         `db:"verb_iri"`
	VerbDisplay sql.NullString `db:"verb_display"`
}

// objectCols are the Object mapper's columns.
type objectCols struct {
	ObjectType            string         `db:"object_type"`
	ActivityID            sql.NullString `db:"activity_id"`
	ActivityName          sql.NullString `db:"activity_name"`
	ActivityDescription   sql.NullString `db:"activity_description"`
	ActivityType          sql.NullString `db:"activity_type"`
	ReferencedStatementID sql.NullString `db:"referenced_statement_id"`
}

// resultCols are the Verb/Result mapper's result columns. The sub-columns
// are meaningful only when HasResult is set.
type resultCols struct {
	HasResult   bool            `db:"has_result"`
	HasScore    bool            `db:"has_score"`
	ScoreScaled sql.NullFloat64 `db:"score_scaled"`
	ScoreRaw    sql.NullFloat64 `db:"score_raw"`
	ScoreMin    sql.NullFloat64 `db:"score_min"`
	ScoreMax    sql.NullFloat64 `db:"score_max"`
	Success     sql.NullBool    `db:"success"`
	Completion  sql.NullBool    `db:"completion"`
	Response    sql.NullString  `db:"response"`
	Duration    sql.NullString  `db:"duration"`
	Extensions  sql.NullString  `db:"extensions"`
}

var statementColumnList = []string{
	"id", "uuid", "lrs_id", "is_sub_statement", "actor_id",
	"verb_iri", "verb_display",
	"object_type", "activity_id", "activity_name", "activity_description", "activity_type", "referenced_statement_id",
	"has_result", "has_score", "score_scaled", "score_raw", "score_min", "score_max",
	"success", "completion", "response", "duration", "extensions",
	"authority_id", "created", "stored",
}

var statementColumns = strings.Join(statementColumnList, ", ")

// insertStatementSQL binds every column except the surrogate id.
var insertStatementSQL = "INSERT INTO xapi_statements (" +
	strings.Join(statementColumnList[1:], ", ") +
	") VALUES (:" + strings.Join(statementColumnList[1:], ", :") + ") RETURNING id"

// attachmentRow mirrors one xapi_attachments row.
type attachmentRow struct {
	ID          int64          `db:"id"`
	UsageType   string         `db:"usage_type"`
	ContentType string         `db:"content_type"`
	Length      int64          `db:"length"`
	SHA2        string         `db:"sha2"`
	Display     string         `db:"display"`
	Description sql.NullString `db:"description"`
	FileURL     sql.NullString `db:"file_url"`
	Content     []byte         `db:"content"`
}

const insertAttachmentSQL = `
	INSERT INTO xapi_attachments
	(usage_type, content_type, length, sha2, display, description, file_url, content)
	VALUES (:usage_type, :content_type, :length, :sha2, :display, :description, :file_url, :content)
	RETURNING id
`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMicro(), Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	b := n.Bool
	return &b
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMicro(n.Int64).UTC()
	return &t
}
