package message

import "github.com/gobolt/driver/packstream"

// Hello builds a HELLO message. fields carries user_agent plus any
// merged-in auth fields (scheme, principal, credentials) and optional
// bolt_agent/routing entries, per §4.2.
func Hello(fields map[string]packstream.Value) *packstream.Structure {
	return &packstream.Structure{Signature: byte(SigHello), Fields: []packstream.Value{fields}}
}

// Logon builds a LOGON message carrying the auth map, used on Bolt 5.1+
// when the server rejected auth merged into HELLO.
func Logon(auth map[string]packstream.Value) *packstream.Structure {
	return &packstream.Structure{Signature: byte(SigLogon), Fields: []packstream.Value{auth}}
}

// Logoff builds a LOGOFF message.
func Logoff() *packstream.Structure {
	return &packstream.Structure{Signature: byte(SigLogoff), Fields: nil}
}

// Goodbye builds a GOODBYE message.
func Goodbye() *packstream.Structure {
	return &packstream.Structure{Signature: byte(SigGoodbye), Fields: nil}
}

// Reset builds a RESET message.
func Reset() *packstream.Structure {
	return &packstream.Structure{Signature: byte(SigReset), Fields: nil}
}

// Run builds a RUN message.
func Run(query string, params map[string]packstream.Value, extra map[string]packstream.Value) *packstream.Structure {
	if params == nil {
		params = map[string]packstream.Value{}
	}
	if extra == nil {
		extra = map[string]packstream.Value{}
	}
	return &packstream.Structure{
		Signature: byte(SigRun),
		Fields:    []packstream.Value{query, params, extra},
	}
}

// pullDiscardFields builds the shared PULL/DISCARD payload {n[, qid]}. n=-1 means
// "all". qid is omitted (defaults to the most recently opened stream on the
// server) when negative.
func pullDiscardFields(n int, qid int64) map[string]packstream.Value {
	f := map[string]packstream.Value{"n": int64(n)}
	if qid >= 0 {
		f["qid"] = qid
	}
	return f
}

// Pull builds a PULL message.
func Pull(n int, qid int64) *packstream.Structure {
	return &packstream.Structure{Signature: byte(SigPull), Fields: []packstream.Value{pullDiscardFields(n, qid)}}
}

// Discard builds a DISCARD message.
func Discard(n int, qid int64) *packstream.Structure {
	return &packstream.Structure{Signature: byte(SigDiscard), Fields: []packstream.Value{pullDiscardFields(n, qid)}}
}

// Begin builds a BEGIN message with transaction metadata (mode, tx_timeout,
// tx_metadata, db, ...).
func Begin(meta map[string]packstream.Value) *packstream.Structure {
	if meta == nil {
		meta = map[string]packstream.Value{}
	}
	return &packstream.Structure{Signature: byte(SigBegin), Fields: []packstream.Value{meta}}
}

// Commit builds a COMMIT message.
func Commit() *packstream.Structure {
	return &packstream.Structure{Signature: byte(SigCommit), Fields: nil}
}

// Rollback builds a ROLLBACK message.
func Rollback() *packstream.Structure {
	return &packstream.Structure{Signature: byte(SigRollback), Fields: nil}
}

// Route builds a ROUTE message. The core never issues this message itself
// (cluster routing is out of scope, §1) but accepts it on decode so a
// well-formed server reply never desynchronizes the stream.
func Route(context map[string]packstream.Value, bookmarks []string, db string) *packstream.Structure {
	bms := make([]packstream.Value, len(bookmarks))
	for i, b := range bookmarks {
		bms[i] = b
	}
	var dbVal packstream.Value
	if db != "" {
		dbVal = db
	}
	return &packstream.Structure{
		Signature: byte(SigRoute),
		Fields:    []packstream.Value{context, bms, dbVal},
	}
}
