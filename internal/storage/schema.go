package storage

const Schema = `
-- URLs: every address referenced as a crawl seed, crawl target or link endpoint
CREATE TABLE IF NOT EXISTS urllist (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL
);
CREATE INDEX IF NOT EXISTS urlidx ON urllist(url);

-- Vocabulary: case-folded words seen in page text or anchor text
CREATE TABLE IF NOT EXISTS wordlist (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    word TEXT UNIQUE NOT NULL
);
CREATE INDEX IF NOT EXISTS wordidx ON wordlist(word);

-- Inverted index: a URL is "indexed" exactly when it has at least one row here
CREATE TABLE IF NOT EXISTS wordlocation (
    urlid INTEGER NOT NULL,
    wordid INTEGER NOT NULL,
    location INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS wordurlidx ON wordlocation(wordid);
CREATE INDEX IF NOT EXISTS locationurlidx ON wordlocation(urlid);

-- Link graph for PageRank; self-loops are never stored
CREATE TABLE IF NOT EXISTS link (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    fromid INTEGER NOT NULL,
    toid INTEGER NOT NULL,
    CHECK (fromid <> toid)
);
CREATE INDEX IF NOT EXISTS urltoidx ON link(toid);
CREATE INDEX IF NOT EXISTS urlfromidx ON link(fromid);

-- Anchor text words per link
CREATE TABLE IF NOT EXISTS linkwords (
    linkid INTEGER NOT NULL,
    wordid INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS linkwordidx ON linkwords(wordid);

-- Hidden units of the relevance network, keyed by a sorted word-id set
CREATE TABLE IF NOT EXISTS hiddennode (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    create_key TEXT UNIQUE NOT NULL
);

-- Layer 0 edges: word -> hidden
CREATE TABLE IF NOT EXISTS wordhidden (
    fromid INTEGER NOT NULL,
    toid INTEGER NOT NULL,
    strength REAL NOT NULL,
    PRIMARY KEY (fromid, toid)
);

-- Layer 1 edges: hidden -> url
CREATE TABLE IF NOT EXISTS hiddenurl (
    fromid INTEGER NOT NULL,
    toid INTEGER NOT NULL,
    strength REAL NOT NULL,
    PRIMARY KEY (fromid, toid)
);
` + pageRankSchema

// pageRankSchema is kept apart because every PageRank run drops and rebuilds it.
const pageRankSchema = `
CREATE TABLE IF NOT EXISTS pagerank (
    urlid INTEGER PRIMARY KEY,
    score REAL NOT NULL
);
`

// dropOrder lists every table removed by Reset.
var dropOrder = []string{
	"pagerank",
	"hiddenurl",
	"wordhidden",
	"hiddennode",
	"linkwords",
	"link",
	"wordlocation",
	"wordlist",
	"urllist",
}
