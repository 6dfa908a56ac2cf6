package auth

import "testing"

func testVerifier() *Verifier {
	return NewVerifier([]Credential{
		{User: "westley", Token: "deadbeef00", Admin: false},
		{User: "max", Token: "cafef00d11", Admin: true},
	})
}

func TestVerify(t *testing.T) {
	v := testVerifier()

	if !v.Verify("westley", "deadbeef00") {
		t.Error("valid credential rejected")
	}
	if v.Verify("westley", "deadbeef01") {
		t.Error("wrong token accepted")
	}
	if v.Verify("westley", "cafef00d11") {
		t.Error("another user's token accepted")
	}
	if v.Verify("humperdinck", "deadbeef00") {
		t.Error("unknown user accepted")
	}
	if v.Verify("westley", "") {
		t.Error("empty token accepted")
	}
	if v.Verify("", "") {
		t.Error("empty credential accepted")
	}
}

func TestVerifyTrimsWhitespace(t *testing.T) {
	v := testVerifier()
	if !v.Verify(" westley ", " deadbeef00 ") {
		t.Error("padded credential rejected")
	}
}

func TestIsAdmin(t *testing.T) {
	v := testVerifier()
	if v.IsAdmin("westley") {
		t.Error("non-admin reported as admin")
	}
	if !v.IsAdmin("max") {
		t.Error("admin not reported")
	}
	if v.IsAdmin("unknown") {
		t.Error("unknown user reported as admin")
	}
}
