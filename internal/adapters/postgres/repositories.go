package postgres

import "gorm.io/gorm"

type Repositories struct {
	Transactions *transactionRepository
	Evaluations  *evaluationRepository
	Alerts       *alertRepository
	Outbox       *outboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Transactions: &transactionRepository{db: db},
		Evaluations:  &evaluationRepository{db: db},
		Alerts:       &alertRepository{db: db},
		Outbox:       &outboxRepository{db: db},
	}
}
