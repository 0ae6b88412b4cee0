package validators

import "go.mongodb.org/mongo-driver/bson"

var ParameterValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"name", "value", "updated_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"value": bson.M{
				"bsonType":  "string",
				"maxLength": 256,
			},
			"description": bson.M{
				"bsonType": "string",
			},
			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
