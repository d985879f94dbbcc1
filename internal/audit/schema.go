package audit

const (
	tableSchema = `
		CREATE TABLE IF NOT EXISTS integrity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			report_id TEXT NOT NULL UNIQUE,
			timestamp TEXT NOT NULL,
			package_name TEXT NOT NULL,
			version_code INTEGER NOT NULL DEFAULT 0,
			installer_name TEXT NOT NULL DEFAULT '',
			effect TEXT NOT NULL CHECK(effect IN ('allow', 'deny')),
			response INTEGER NOT NULL CHECK(response IN (1, 2, 3)),
			rule_id TEXT NOT NULL DEFAULT '',
			rule TEXT,
			app_cert_cause INTEGER NOT NULL DEFAULT 0,
			installer_cause INTEGER NOT NULL DEFAULT 0,
			CHECK(effect = 'allow' OR rule_id != '')
		)`

	triggerPreventUpdate = `
		CREATE TRIGGER IF NOT EXISTS prevent_update
		BEFORE UPDATE ON integrity_log
		FOR EACH ROW
		BEGIN
			SELECT RAISE(FAIL, 'Updates not allowed on integrity_log');
		END`

	triggerPreventDelete = `
		CREATE TRIGGER IF NOT EXISTS prevent_delete
		BEFORE DELETE ON integrity_log
		FOR EACH ROW
		BEGIN
			SELECT RAISE(FAIL, 'Deletes not allowed on integrity_log');
		END`

	indexTimestamp = `
		CREATE INDEX IF NOT EXISTS idx_timestamp ON integrity_log(timestamp DESC)`

	indexResponse = `
		CREATE INDEX IF NOT EXISTS idx_response ON integrity_log(response)`
)

func schemaStatements() []string {
	return []string{
		tableSchema,
		triggerPreventUpdate,
		triggerPreventDelete,
		indexTimestamp,
		indexResponse,
	}
}
