package keys

import "kya.dev/kya/kya"

// SignAction signs in with the stored key ref, replacing any key already set on in.
func (ks *KeyStore) SignAction(ref string, in kya.SignActionInput) (*kya.SignResult, error) {
	kp, err := ks.Load(ref)
	if err != nil {
		return nil, err
	}
	in.PrivateKeyBase64 = kp.PrivateKeyBase64()
	return kya.SignAction(in)
}

// BuildSignedRequest builds a request body signed with the stored key ref.
func (ks *KeyStore) BuildSignedRequest(ref string, in kya.BuildSignedRequestInput) (*kya.SignedRequest, error) {
	kp, err := ks.Load(ref)
	if err != nil {
		return nil, err
	}
	in.PrivateKeyBase64 = kp.PrivateKeyBase64()
	return kya.BuildSignedRequest(in)
}
