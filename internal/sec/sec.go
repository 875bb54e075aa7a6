// Package sec holds the password schemes a shop database can use.
//
// The shop stores passwords as plaintext and compares them with SQL
// equality. That remains the default ([SchemePlaintext]). [SchemeBcrypt] is
// an explicit opt-in: the password column is expected to hold a bcrypt hash
// and matching moves from SQL into [MatchesStored].
package sec
