package auditlog

import "sort"

// Field names used by MySQL Enterprise Audit records.
const (
	FieldName           = "NAME"
	FieldTimestamp      = "TIMESTAMP"
	FieldRecordID       = "RECORD_ID"
	FieldCommandClass   = "COMMAND_CLASS"
	FieldConnectionID   = "CONNECTION_ID"
	FieldDB             = "DB"
	FieldHost           = "HOST"
	FieldIP             = "IP"
	FieldMySQLVersion   = "MYSQL_VERSION"
	FieldOSLogin        = "OS_LOGIN"
	FieldOSVersion      = "OS_VERSION"
	FieldPrivUser       = "PRIV_USER"
	FieldProxyUser      = "PROXY_USER"
	FieldServerID       = "SERVER_ID"
	FieldSQLText        = "SQLTEXT"
	FieldStartupOptions = "STARTUP_OPTIONS"
	FieldStatus         = "STATUS"
	FieldStatusCode     = "STATUS_CODE"
	FieldUser           = "USER"
	FieldVersion        = "VERSION"
)

// optionalFields are copied into a Record only when present and non-empty.
var optionalFields = []string{
	FieldConnectionID, FieldDB, FieldHost, FieldIP, FieldMySQLVersion,
	FieldOSLogin, FieldOSVersion, FieldPrivUser, FieldProxyUser, FieldServerID,
	FieldSQLText, FieldStartupOptions, FieldStatus, FieldUser, FieldVersion,
}

// newFormatOptionalFields only exist in the child-element schema.
var newFormatOptionalFields = []string{FieldCommandClass, FieldStatusCode}

// FieldOrder is the canonical column order used when printing records.
var FieldOrder = []string{
	FieldName, FieldTimestamp, FieldRecordID, FieldConnectionID, FieldUser,
	FieldPrivUser, FieldProxyUser, FieldHost, FieldIP, FieldDB, FieldCommandClass,
	FieldSQLText, FieldStatus, FieldStatusCode, FieldServerID, FieldVersion,
	FieldMySQLVersion, FieldOSLogin, FieldOSVersion, FieldStartupOptions,
}

// Record is one audit log entry keyed by field name.
type Record map[string]string

// Get returns the value of field and whether it is present.
func (r Record) Get(field string) (string, bool) {
	v, ok := r[field]
	return v, ok
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the record's field names in FieldOrder, unknown fields last in
// lexical order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	seen := make(map[string]struct{}, len(r))
	for _, f := range FieldOrder {
		if _, ok := r[f]; ok {
			keys = append(keys, f)
			seen[f] = struct{}{}
		}
	}
	var extra []string
	for k := range r {
		if _, ok := seen[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// Entry pairs a decoded record with the source text it was assembled from.
type Entry struct {
	Record Record
	Raw    string
}
