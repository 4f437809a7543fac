// Package vault resolves secret configuration values from a HashiCorp
// Vault KV v2 mount.
//
// Any of the upstream username, password, keystore passphrase or audit
// database URL may be written as a reference instead of a literal:
//
//	upstream:
//	  password: vault:fx/visa#password
//	  clientCert:
//	    passphrase: vault:fx/visa#keystore
//
// The loader resolves references once per configuration load, so a hot
// reload also picks up rotated secrets.
package vault
