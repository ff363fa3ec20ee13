// Package wire implements the NAD line protocol codec.
//
// Every message is one ASCII line:
//
//	Main.Power=On       set, or report from the amplifier
//	Main.Volume?        query one key
//	Main?               query every key of the zone
//
// Outbound lines are produced by Codec.Encode and always end in "\n".
// Inbound lines are parsed by Codec.Decode, which never fails: anything that
// is not a recognized report is dropped, because amplifiers emit lines the
// client has no use for and a noisy line must not end the session.
//
// The codec does no buffering. Callers hand it complete lines.
package wire
