// Package schema declares the record models an orbit store accepts.
//
// A Schema names every model, its attributes and keys, and its
// relationships. Each relationship is hasOne or hasMany, targets a declared
// model, and may name an inverse relationship on that model. The cache uses
// the schema to reject operations on undeclared models or relationships and
// to maintain inverse links.
//
// Schemas are usually authored in CUE:
//
//	models: {
//		planet: {
//			attributes: {name: string}
//			keys: ["remoteId"]
//			relationships: moons: {hasMany: "moon", inverse: "planet"}
//		}
//		moon: relationships: planet: {hasOne: "planet", inverse: "moons"}
//	}
package schema
