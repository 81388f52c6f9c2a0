package rulesource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"changeprop/pkg/metrics"
	"changeprop/pkg/rule"
)

// PostgresSource loads the rules document from change_prop_rules, used
// when rule_source.type is "postgres" so rules can be edited and
// reloaded without a redeploy, mirroring the teacher's
// filtering.PostgresRepository.GetActiveRules query shape.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Load(ctx context.Context) (rule.Document, error) {
	const query = `SELECT name, document FROM change_prop_rules ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		metrics.DatabaseQueriesTotal.WithLabelValues("postgres", "select_rules", "error").Inc()
		return rule.Document{}, fmt.Errorf("rulesource: querying change_prop_rules: %w", err)
	}
	defer rows.Close()

	var doc rule.Document
	for rows.Next() {
		var name string
		var raw []byte
		if err := rows.Scan(&name, &raw); err != nil {
			metrics.DatabaseQueriesTotal.WithLabelValues("postgres", "select_rules", "error").Inc()
			return rule.Document{}, fmt.Errorf("rulesource: scanning rule row: %w", err)
		}

		var spec rule.Spec
		if err := json.Unmarshal(raw, &spec); err != nil {
			metrics.DatabaseQueriesTotal.WithLabelValues("postgres", "select_rules", "error").Inc()
			return rule.Document{}, fmt.Errorf("rulesource: decoding document for rule %q: %w", name, err)
		}
		if spec.Name == "" {
			spec.Name = name
		}
		doc.Rules = append(doc.Rules, spec)
	}
	if err := rows.Err(); err != nil {
		metrics.DatabaseQueriesTotal.WithLabelValues("postgres", "select_rules", "error").Inc()
		return rule.Document{}, fmt.Errorf("rulesource: iterating rule rows: %w", err)
	}

	metrics.DatabaseQueriesTotal.WithLabelValues("postgres", "select_rules", "success").Inc()
	return doc, nil
}
