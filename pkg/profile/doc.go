/*
Package profile implements the chain and leaf validation policies
that pkg/pki applies when validating a certificate: allowed hash
families, key-size bounds, key-usage/extended-key-usage masks,
hostname and ApplicationUri checks, and the backward-interoperability
and revocation-disable switches.
*/
package profile
