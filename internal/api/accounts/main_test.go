package accounts

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	os.Setenv("HLD_JWT_SECRET", "test-secret-key-for-account-tests-32chars")
	os.Exit(m.Run())
}
