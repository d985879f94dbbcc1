package audit

const (
	queryInsertEntry = `
		INSERT INTO integrity_log (
			report_id, timestamp, package_name, version_code, installer_name,
			effect, response, rule_id, rule, app_cert_cause, installer_cause
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	querySelectAll = `
		SELECT id, report_id, timestamp, package_name, version_code, installer_name,
			effect, response, rule_id, rule, app_cert_cause, installer_cause
		FROM integrity_log
		ORDER BY timestamp DESC, id DESC`

	querySummary = `
		SELECT response, COUNT(*)
		FROM integrity_log
		GROUP BY response`

	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)
