package extract

// systemPrompt constrains the model to the graph schema and to JSON output.
const systemPrompt = `You are generating structured data for a Neo4j knowledge graph focused on parties and countries.
Please output entities and relationships in JSON format, using the following schema:

- "entities": list of objects with "name" and "type".
  - "type" must be one of "Person", "Party", "Country".
- "relationships": list of objects with "type", "from" and "to".
  - "type" must be "MEMBER_OF" for party membership or "ASSOCIATED_WITH" for a country or state.
  - "from" and "to" must be names that appear in "entities".
  - Optionally add "from_type" and "to_type" with the entity type of each end.

Example:
{"entities": [{"name": "Joe Biden", "type": "Person"}, {"name": "Democratic Party", "type": "Party"}],
 "relationships": [{"type": "MEMBER_OF", "from": "Joe Biden", "to": "Democratic Party", "from_type": "Person", "to_type": "Party"}]}

Output only the JSON object.`
