package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE process_definitions (
				name VARCHAR(255) PRIMARY KEY,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE archived_executions (
				id UUID PRIMARY KEY,
				process_name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				variables JSONB,
				metadata JSONB,
				failure_kind VARCHAR(100),
				failure_detail TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
				archived_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_archived_executions_process ON archived_executions(process_name);
			CREATE INDEX idx_archived_executions_status ON archived_executions(status);
			CREATE INDEX idx_archived_executions_started_at ON archived_executions(started_at);

			CREATE TABLE task_records (
				id UUID PRIMARY KEY,
				execution_id UUID NOT NULL REFERENCES archived_executions(id) ON DELETE CASCADE,
				task_name VARCHAR(255) NOT NULL,
				task_kind VARCHAR(50) NOT NULL,
				outcome VARCHAR(50) NOT NULL,
				attributes JSONB,
				error_detail TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_task_records_execution_id ON task_records(execution_id);
			CREATE INDEX idx_task_records_task_name ON task_records(task_name);
			CREATE INDEX idx_task_records_started_at ON task_records(started_at);
		`,
	}
}
