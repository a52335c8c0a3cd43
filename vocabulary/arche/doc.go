// Package arche provides the default predicate and class IRIs of the
// ARCHE repository schema.
//
// The IIIF core never references these constants directly: property roles
// are indirected through iiif.Schema so deployments against repositories
// with a different vocabulary only need a config override. This package is
// the source of the defaults.
package arche
