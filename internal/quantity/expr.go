package quantity

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// postgresDecimalPattern は decimalPattern と同じ規則のPostgreSQL正規表現。
// MongoDBの$regexMatchでも同じ文字列を使う。
const postgresDecimalPattern = `^\s*[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)\s*$`

// PostgresExpr はJSONB列に格納された数量を正規化するSQL式を返す。
// 結果はnumeric型で、巨大な値でもオーバーフローせずに並び替えられる。
// columnは信頼できる列名のみを渡すこと（エスケープしない）。
func PostgresExpr(column string) string {
	return fmt.Sprintf(`(CASE jsonb_typeof(%[1]s)
		WHEN 'number' THEN (%[1]s)::numeric
		WHEN 'string' THEN CASE WHEN (%[1]s #>> '{}') ~ '%[2]s'
			THEN btrim(%[1]s #>> '{}', E' \t\n\f\r')::numeric ELSE 0 END
		ELSE 0 END)`, column, postgresDecimalPattern)
}

// MongoExpr はドキュメントのフィールドに格納された数量を正規化する集計式を返す。
// 数値はdoubleに変換し、文字列は decimalPattern に一致する場合のみ$convertで解析する。
// 指数表記やNaN、Infinityは$convertが受け付けてしまうため、正規表現で先に除外する。
// 真偽値などその他の型は0として扱う。
func MongoExpr(field string) bson.D {
	ref := "$" + field
	return bson.D{{Key: "$switch", Value: bson.D{
		{Key: "branches", Value: bson.A{
			bson.D{
				{Key: "case", Value: bson.D{{Key: "$isNumber", Value: ref}}},
				{Key: "then", Value: bson.D{{Key: "$toDouble", Value: ref}}},
			},
			bson.D{
				{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{
					bson.D{{Key: "$type", Value: ref}}, "string",
				}}}},
				{Key: "then", Value: bson.D{{Key: "$cond", Value: bson.D{
					{Key: "if", Value: bson.D{{Key: "$regexMatch", Value: bson.D{
						{Key: "input", Value: ref},
						{Key: "regex", Value: postgresDecimalPattern},
					}}}},
					{Key: "then", Value: bson.D{{Key: "$convert", Value: bson.D{
						{Key: "input", Value: bson.D{{Key: "$trim", Value: bson.D{{Key: "input", Value: ref}}}}},
						{Key: "to", Value: "double"},
						{Key: "onError", Value: 0},
						{Key: "onNull", Value: 0},
					}}}},
					{Key: "else", Value: 0},
				}}}},
			},
		}},
		{Key: "default", Value: 0},
	}}}
}
