// Package models holds the GORM persistence models backing the identity
// store. They carry the table mappings and column tags so the domain
// entities stay free of ORM concerns; the repository converts between
// the two at its boundary.
package models
