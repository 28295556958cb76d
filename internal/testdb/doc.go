// Package testdb opens the integration-test PostgreSQL database and isolates
// each test in a transaction that is always rolled back.
//
// Tests are skipped when neither SCRY_TEST_DATABASE_URL nor DATABASE_URL is set.
//
//	db := testdb.Open(t)
//	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	    notes := postgres.NewPostgresNoteStore(tx, nil)
//	    ...
//	})
package testdb
