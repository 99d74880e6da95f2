// Package catalog stores entities and users in an embedded badger database.
//
// Values are JSON documents under prefixed keys:
//
//	Data Type   Prefix   Key Format        Value
//	---------   ------   ----------        -----
//	Entity      e:       e:<entity id>     media.Entity
//	User        u:       u:<user id>       media.User
//
// The transfer path only reads entities and rewrites source paths; entities
// and users are otherwise loaded in bulk with Import.
package catalog
