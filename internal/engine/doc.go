// Package engine runs the read, parse, dispatch, respond cycle against the
// host's stdin/stdout pipes.
//
// The loop is strictly sequential: one frame is read, answered (or dropped)
// and only then is the next frame read. Every phase runs behind a fault
// boundary that turns panics into a *Fault; all errors funnel through a
// single reporting function that picks the log severity. Only end of input
// (or an unrecoverable transport error) stops the loop. Malformed frames,
// short messages and provider failures are logged and produce no response.
//
// Example usage:
//
//	eng, err := engine.New(engine.Config{
//	    In:       os.Stdin,
//	    Out:      os.Stdout,
//	    Provider: store,
//	    Log:      sink,
//	})
//	if err != nil {
//	    return err
//	}
//	return eng.Run(ctx)
package engine
