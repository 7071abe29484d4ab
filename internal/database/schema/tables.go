package schema

// TableDefinitions contains all the SQL statements to create the database tables
// Don't put REFERENCES and don't put CHECK constraints in the CREATE TABLE statements
var TableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		api_key VARCHAR(255) UNIQUE NOT NULL,
		webhook_url TEXT,
		webhook_api_key VARCHAR(255),
		webhook_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		webhook_events TEXT[] NOT NULL DEFAULT '{}',
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS email_services (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		template_id UUID,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (tenant_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS service_configurations (
		id UUID PRIMARY KEY,
		email_service_id UUID NOT NULL,
		application_id UUID NOT NULL,
		smtp_configuration_id UUID NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS smtp_configurations (
		id UUID PRIMARY KEY,
		host VARCHAR(255) NOT NULL,
		port INTEGER NOT NULL DEFAULT 587,
		username VARCHAR(255) NOT NULL,
		password_wrapped TEXT NOT NULL,
		use_tls BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS email_templates (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		subject_template TEXT NOT NULL,
		body_template TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (tenant_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS email_jobs (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL,
		application_id UUID NOT NULL,
		service_id UUID NOT NULL,
		to_email VARCHAR(255) NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'queued',
		sent_at TIMESTAMP,
		processing_started_at TIMESTAMP,
		error_message TEXT,
		error_category VARCHAR(20),
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		next_retry_at TIMESTAMP,
		webhook_requested BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS email_logs (
		id UUID PRIMARY KEY,
		job_id UUID NOT NULL,
		status VARCHAR(20) NOT NULL,
		response_code INTEGER,
		response_message TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id UUID PRIMARY KEY,
		email_job_id UUID NOT NULL,
		application_id UUID NOT NULL,
		tenant_id UUID NOT NULL,
		webhook_url TEXT NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		next_retry_at TIMESTAMP,
		last_response_code INTEGER,
		last_response_body TEXT,
		last_error TEXT,
		delivered_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS task_queue (
		id UUID PRIMARY KEY,
		queue VARCHAR(50) NOT NULL,
		kind VARCHAR(50) NOT NULL,
		entity_id UUID NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		visible_at TIMESTAMP NOT NULL,
		locked_until TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_api_key ON applications (api_key)`,
	`CREATE INDEX IF NOT EXISTS idx_email_jobs_status ON email_jobs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_email_jobs_created_at ON email_jobs (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_email_logs_job_id ON email_logs (job_id)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_email_job_id ON webhook_deliveries (email_job_id)`,
	`CREATE INDEX IF NOT EXISTS idx_task_queue_dequeue ON task_queue (queue, visible_at, created_at)`,
}

// TableNames lists all tables in creation order
var TableNames = []string{
	"applications",
	"email_services",
	"service_configurations",
	"smtp_configurations",
	"email_templates",
	"email_jobs",
	"email_logs",
	"webhook_deliveries",
	"task_queue",
}
