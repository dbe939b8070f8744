package object

// CommitSigningPayload returns the bytes a commit signature covers: the
// commit serialized with its Signature field cleared. Signing and
// verification both derive the payload this way, so a verifier never needs
// the pre-signature bytes kept around.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}
