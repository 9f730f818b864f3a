package models

// All lists every persisted model. Used for sqlite auto-migration.
func All() []any {
	return []any{
		&GasStation{},
		&Product{},
		&Tank{},
		&Station{},
		&Nozzle{},
		&COA{},
		&Transaction{},
		&JournalEntry{},
		&Unload{},
		&TitipanAccount{},
		&TitipanFill{},
		&TankReading{},
		&OperatorShift{},
		&NozzleReading{},
		&Deposit{},
		&DepositDetail{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
